package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleStudent} {
		parsed, err := ParseRole(role.String())
		require.NoError(t, err)
		assert.Equal(t, role, parsed)
		assert.True(t, role.Valid())
	}

	_, err := ParseRole("librarian")
	assert.Error(t, err)
	assert.False(t, Role(0).Valid())
	assert.Equal(t, "Role(7)", Role(7).String())
}

func TestRoleJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Role{"role": RoleStudent})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"student"}`, string(data))

	var decoded struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"admin"}`), &decoded))
	assert.Equal(t, RoleAdmin, decoded.Role)

	assert.Error(t, json.Unmarshal([]byte(`{"role":"root"}`), &decoded))

	_, err = json.Marshal(struct{ R Role }{R: Role(9)})
	assert.Error(t, err)
}

func TestStringListColumn(t *testing.T) {
	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = StringList{"first-book", "bookworm"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["first-book","bookworm"]`, v)

	var l StringList
	require.NoError(t, l.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, StringList{"a", "b"}, l)

	require.NoError(t, l.Scan(nil))
	assert.Equal(t, StringList{}, l)

	require.NoError(t, l.Scan(""))
	assert.Equal(t, StringList{}, l)

	assert.Error(t, l.Scan(42))
	assert.True(t, StringList{"a"}.Contains("a"))
	assert.False(t, StringList{"a"}.Contains("b"))
}

func TestAddRating(t *testing.T) {
	var r Ratings
	r.AddRating(5)
	r.AddRating(4)
	r.AddRating(3)
	assert.Equal(t, 3, r.Count)
	assert.InDelta(t, 4.0, r.Average, 1e-9)
}

func TestStudentLoans(t *testing.T) {
	s := Student{BorrowedBooks: []BorrowRecord{
		{BookID: "a", Status: LoanReturned},
		{BookID: "a", Status: LoanBorrowed},
		{BookID: "b", Status: LoanBorrowed},
		{BookID: "c", Status: LoanReturned},
	}}

	require.NotNil(t, s.ActiveLoan("a"))
	assert.Equal(t, LoanBorrowed, s.ActiveLoan("a").Status)
	assert.Nil(t, s.ActiveLoan("c"))
	assert.Equal(t, 2, s.ActiveLoanCount())
}

func TestValidBranch(t *testing.T) {
	assert.True(t, ValidBranch(""))
	assert.True(t, ValidBranch(string(BranchCivil)))
	assert.False(t, ValidBranch("Civil"))
}

func TestBeforeCreateDefaults(t *testing.T) {
	var s Student
	require.NoError(t, s.BeforeCreate(nil))
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, s.Level)
	assert.NotNil(t, s.Badges)
	assert.NotNil(t, s.Preferences.FavoriteCategories)

	r := BorrowRecord{}
	require.NoError(t, r.BeforeCreate(nil))
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, LoanBorrowed, r.Status)
}
