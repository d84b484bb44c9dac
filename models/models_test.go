package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline(t *testing.T) {
	next, ok := StatusSubmitted.Next()
	require.True(t, ok)
	assert.Equal(t, StatusApprovedByAreaManager, next)
	next, ok = StatusApprovedByAreaManager.Next()
	require.True(t, ok)
	assert.Equal(t, StatusApprovedByAGM, next)
	_, ok = StatusApprovedByAGM.Next()
	assert.False(t, ok)
	_, ok = CustomerStatus("rejected").Next()
	assert.False(t, ok)

	assert.True(t, StatusApprovedByAGM.Final())
	assert.Equal(t, -1, CustomerStatus("").Rank())
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"admin": RoleAdmin, "AGM": RoleAGM, "agm": RoleAGM,
		"area_manager": RoleAreaManager, "Area-Manager": RoleAreaManager, " branch ": RoleBranch,
	} {
		got, ok := ParseRole(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseRole("auditor")
	assert.False(t, ok)
	assert.True(t, RoleAGM.Global())
	assert.False(t, RoleAreaManager.Global())
}

func TestSnapshotClone_IsDeep(t *testing.T) {
	img := "img-1"
	s := NewSnapshot()
	s.Users["m1"] = &Account{Username: "m1", Role: RoleAreaManager, AssignedBranches: []string{"North"}}
	s.Customers["CUST-1"] = &Customer{CustomerID: "CUST-1", History: []StatusChange{{Status: StatusSubmitted}}}
	s.Dashboard.ImageReference = &img

	c := s.Clone()
	c.Users["m1"].AssignedBranches[0] = "South"
	c.Customers["CUST-1"].History[0].By = "x"
	*c.Dashboard.ImageReference = "img-2"
	delete(c.Users, "m1")

	assert.Equal(t, "North", s.Users["m1"].AssignedBranches[0])
	assert.Empty(t, s.Customers["CUST-1"].History[0].By)
	assert.Equal(t, "img-1", *s.Dashboard.ImageReference)
}

func TestCustomersInOrder(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewSnapshot()
	s.Customers["CUST-3"] = &Customer{CustomerID: "CUST-3", CreatedAt: at.Add(-time.Hour)}
	s.Customers["CUST-2"] = &Customer{CustomerID: "CUST-2", CreatedAt: at}
	s.Customers["CUST-1"] = &Customer{CustomerID: "CUST-1", CreatedAt: at}

	var ids []string
	for _, c := range s.CustomersInOrder() {
		ids = append(ids, c.CustomerID)
	}
	assert.Equal(t, []string{"CUST-3", "CUST-1", "CUST-2"}, ids)
}
