package principal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"student", KindStudent, false},
		{"company", KindCompany, false},
		{"admin", KindAdmin, false},
		{"Student", KindStudent, false},
		{"ADMIN", KindAdmin, false},
		{"", "", true},
		{"wizard", "", true},
	}

	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewRef(t *testing.T) {
	ref, err := NewRef(KindStudent, 42)
	require.NoError(t, err)
	assert.True(t, ref.Valid())
	assert.Equal(t, "student/42", ref.String())

	_, err = NewRef(KindStudent, 0)
	assert.Error(t, err)

	_, err = NewRef(Kind("wizard"), 1)
	assert.Error(t, err)

	assert.False(t, Ref{}.Valid())
}

func TestRowToPrincipal_DisplayNames(t *testing.T) {
	s := studentRow{ID: 1, Email: "a@x.com", FirstName: "Ada", LastName: "Lovelace"}
	p := s.toPrincipal()
	assert.Equal(t, "Ada Lovelace", p.DisplayName)
	assert.Equal(t, Ref{Kind: KindStudent, ID: 1}, p.Ref)
	assert.Equal(t, "student", p.Role())

	c := companyRow{ID: 2, Email: "hr@acme.com", Name: "Acme Corp"}
	assert.Equal(t, "Acme Corp", c.toPrincipal().DisplayName)

	a := adminRow{ID: 3, Email: "root@x.com", FirstName: "Grace", LastName: "Hopper"}
	assert.Equal(t, "Grace Hopper", a.toPrincipal().DisplayName)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
}
