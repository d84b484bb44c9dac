package auth

import (
	"customerIntake/internal/apperr"
	"customerIntake/models"
)

// creatable is the role-creation matrix. Admin accounts only come from
// bootstrap.
var creatable = map[models.Role][]models.Role{
	models.RoleAdmin:       {models.RoleAGM, models.RoleAreaManager, models.RoleBranch},
	models.RoleAGM:         {models.RoleAreaManager},
	models.RoleAreaManager: {models.RoleBranch},
}

// CanCreate reports whether creator may create an account with role target.
func CanCreate(creator, target models.Role) bool {
	for _, r := range creatable[creator] {
		if r == target {
			return true
		}
	}
	return false
}

// CanAssignBranches reports whether creator may hand out every branch in
// branches. Area managers are limited to their own branches.
func CanAssignBranches(creator *models.Account, branches []string) bool {
	if creator == nil {
		return false
	}
	if creator.Role != models.RoleAreaManager {
		return true
	}
	for _, b := range branches {
		if !creator.HasBranch(b) {
			return false
		}
	}
	return true
}

// CanSubmit reports whether actor may submit customer records.
func CanSubmit(actor *models.Account) bool {
	return actor != nil && actor.Role == models.RoleBranch
}

// CanDelete reports whether actor may delete customer records.
func CanDelete(actor *models.Account) bool {
	return actor != nil && actor.Role == models.RoleAdmin
}

// CanConfigureDashboard reports whether actor may change the dashboard.
func CanConfigureDashboard(actor *models.Account) bool {
	return actor != nil && actor.Role == models.RoleAdmin
}

// CanViewStats reports whether actor may see system-wide counts.
func CanViewStats(actor *models.Account) bool {
	return actor != nil && actor.Role == models.RoleAdmin
}

// CanView reports whether c is inside actor's visibility scope.
func CanView(actor *models.Account, c *models.Customer) bool {
	if actor == nil || c == nil {
		return false
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleAGM:
		return true
	case models.RoleAreaManager:
		return actor.HasBranch(c.Branch)
	case models.RoleBranch:
		return c.SubmittedBy == actor.Username
	}
	return false
}

// CanViewAccount reports whether target is visible in actor's account list.
func CanViewAccount(actor, target *models.Account) bool {
	if actor == nil || target == nil {
		return false
	}
	if actor.Username == target.Username {
		return true
	}
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleAGM:
		return target.Role == models.RoleAreaManager || target.Role == models.RoleBranch
	case models.RoleAreaManager:
		if target.Role != models.RoleBranch {
			return false
		}
		for _, b := range target.AssignedBranches {
			if actor.HasBranch(b) {
				return true
			}
		}
	}
	return false
}

// CanApprove is the approval transition table. It returns the status c moves
// to when actor approves it.
//
//	submitted                -> approved_by_area_manager  (area_manager holding c.Branch)
//	approved_by_area_manager -> approved_by_agm           (AGM)
//	approved_by_agm          -> AlreadyFinal
func CanApprove(actor *models.Account, c *models.Customer) (models.CustomerStatus, error) {
	if c == nil {
		return "", apperr.New(apperr.NotFound, "customer not found")
	}
	if c.Status.Final() {
		return "", apperr.New(apperr.AlreadyFinal, "customer %s is already fully approved", c.CustomerID)
	}
	next, ok := c.Status.Next()
	if !ok {
		return "", apperr.New(apperr.Internal, "customer %s has unknown status %q", c.CustomerID, c.Status)
	}
	if actor == nil {
		return "", apperr.New(apperr.PermissionDenied, "no session")
	}
	switch c.Status {
	case models.StatusSubmitted:
		if actor.Role == models.RoleAreaManager && actor.HasBranch(c.Branch) {
			return next, nil
		}
		if actor.Role == models.RoleAreaManager {
			return "", apperr.New(apperr.PermissionDenied, "branch %q is not assigned to %s", c.Branch, actor.Username)
		}
		return "", apperr.New(apperr.PermissionDenied, "only an area manager of branch %q can approve a submitted record", c.Branch)
	case models.StatusApprovedByAreaManager:
		if actor.Role == models.RoleAGM {
			return next, nil
		}
		return "", apperr.New(apperr.PermissionDenied, "only an AGM can give final approval")
	}
	return "", apperr.New(apperr.PermissionDenied, "no transition from %q", c.Status)
}
