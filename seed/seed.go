// Package seed holds the demo dataset loaded into an empty store on
// first run: the four funding programs, the office roster, and a small
// dependency chain of tasks.
package seed

import (
	"time"

	"github.com/bpd-ops/central/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Demo returns the initial dataset. Seeding only happens when the
// target store is empty, so the fixed IDs are safe.
func Demo() model.AppState {
	usdaDone := date(2025, time.January, 20)
	programsCreated := date(2024, time.January, 1)

	return model.AppState{
		Tasks: []model.Task{
			{
				ID:             "t-usda-allotment",
				Name:           "USDA Advice Allotment Initial",
				Description:    "Initial filing for USDA funding advice allotment.",
				Program:        "USDA",
				AssignedTo:     "Melia",
				AssignedToID:   "u-melia",
				Priority:       model.PriorityHigh,
				Status:         model.StatusCompleted,
				Progress:       100,
				StartDate:      date(2025, time.January, 5),
				PlannedEndDate: date(2025, time.January, 20),
				ActualEndDate:  &usdaDone,
				DependentTasks: []string{},
				UpdatedAt:      time.Date(2025, time.December, 29, 8, 42, 30, 0, time.UTC),
				UpdatedBy:      "system",
			},
			{
				ID:             "t-ptc-travel",
				Name:           "Travel for PTC",
				Description:    "Logistics and travel arrangements for the PTC conference.",
				Program:        "BPD",
				AssignedTo:     "Dolorez",
				AssignedToID:   "u-dolorez",
				Priority:       model.PriorityHigh,
				Status:         model.StatusInProgress,
				Progress:       45,
				StartDate:      date(2025, time.January, 25),
				PlannedEndDate: date(2025, time.February, 10),
				DependentTasks: []string{"t-usda-allotment"},
				UpdatedAt:      time.Date(2025, time.December, 29, 9, 15, 40, 0, time.UTC),
				UpdatedBy:      "System Admin",
			},
			{
				ID:             "t-binders-redacted",
				Name:           "Redacted Subgrantee Binders",
				Description:    "Process and verify redacted versions of subgrantee binders for public release.",
				Program:        "BEAD",
				AssignedTo:     "Dayna",
				AssignedToID:   "u-dayna",
				Priority:       model.PriorityHigh,
				Status:         model.StatusOpen,
				Progress:       0,
				StartDate:      date(2025, time.February, 15),
				PlannedEndDate: date(2025, time.March, 1),
				DependentTasks: []string{"t-ptc-travel"},
				UpdatedAt:      time.Date(2025, time.December, 29, 9, 14, 40, 0, time.UTC),
				UpdatedBy:      "System Admin",
			},
		},
		Programs: []model.Program{
			{ID: "p-bead", Name: "BEAD", Description: "Broadband Equity, Access, and Deployment", Color: "indigo", CreatedAt: programsCreated, CreatedBy: "u-admin"},
			{ID: "p-cpf", Name: "CPF", Description: "Capital Projects Fund", Color: "emerald", CreatedAt: programsCreated, CreatedBy: "u-admin"},
			{ID: "p-usda", Name: "USDA", Description: "USDA Broadband Technical Assistance", Color: "amber", CreatedAt: programsCreated, CreatedBy: "u-admin"},
			{ID: "p-bpd", Name: "BPD", Description: "Broadband Policy and Development", Color: "rose", CreatedAt: programsCreated, CreatedBy: "u-admin"},
		},
		Users: []model.User{
			{ID: "u-admin", Name: "System Admin", Email: "admin@bpd.gov", Role: "Admin", Department: "Operations"},
			{ID: "u-glen", Name: "Glen", Email: "g.hunter@cnmi.gov", Role: "Manager", Department: "BEAD"},
			{ID: "u-melia", Name: "Melia", Email: "me.johnson@dof.gov.mp", Role: "Staff", Department: "BEAD"},
			{ID: "u-dolorez", Name: "Dolorez", Email: "d.salas@bpd.cnmi.gov", Role: "Admin", Department: "BEAD"},
			{ID: "u-dayna", Name: "Dayna", Email: "dayna@bpd.gov", Role: "Staff", Department: "BEAD"},
		},
	}
}
