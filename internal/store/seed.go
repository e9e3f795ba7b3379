package store

import "github.com/maintsync/maintsync/internal/model"

// SeedAccounts is the first-run bootstrap state: without at least an admin
// on the device nobody could create accounts at all. Credentials are unset
// until the first sync or an admin edit.
func SeedAccounts() []model.Account {
	return []model.Account{
		{ID: 1, Name: "Ana Silva", Role: model.RoleRequester, Sector: "Production"},
		{ID: 2, Name: "Bruno Costa", Role: model.RoleTechnician, Sector: "Electrical Maintenance"},
		{ID: 3, Name: "Carlos Dias", Role: model.RoleManager, Sector: "Management"},
		{ID: 4, Name: "Daniela Souza", Role: model.RoleAdmin, Sector: "IT"},
		{ID: 5, Name: "Eduardo Lima", Role: model.RoleTechnician, Sector: "Mechanical Maintenance"},
		{ID: 6, Name: "Preventive Scheduler", Role: model.RoleSystem, Sector: "System"},
	}
}
