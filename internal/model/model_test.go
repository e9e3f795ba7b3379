package model

import (
	"testing"
	"time"
)

func TestWorkOrder_Clone_Independence(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	orig := WorkOrder{
		ID:               "OS-10032026-1",
		Title:            "Hydraulic press leaking",
		Requester:        Account{ID: 1, Name: "Ana Silva", Role: RoleRequester, CredentialHash: []byte{1, 2}},
		Equipment:        []string{"Press PH-01"},
		MaintenanceTypes: []MaintenanceType{MaintMechanical},
		Status:           StatusInProgress,
		StartedAt:        &started,
		Attachments:      []Attachment{{FileName: "leak.jpg", MediaType: "image/jpeg", Content: []byte{0xff}}},
		Checklist:        map[MaintenanceType][]ChecklistItem{MaintMechanical: {{Name: "check seals"}}},
		PendingCompletion: &PendingCompletion{
			RequestedAt:   started,
			Justification: "paperwork lagged",
		},
	}

	cp := orig.Clone()
	cp.Equipment[0] = "mutated"
	cp.MaintenanceTypes[0] = MaintCivil
	cp.Requester.Name = "mutated"
	cp.Requester.CredentialHash[0] = 9
	*cp.StartedAt = cp.StartedAt.Add(time.Hour)
	cp.Attachments[0].Content[0] = 0
	cp.Checklist[MaintMechanical][0].Done = true
	cp.PendingCompletion.Justification = "mutated"

	if orig.Equipment[0] != "Press PH-01" {
		t.Fatalf("equipment slice shared with clone")
	}
	if orig.MaintenanceTypes[0] != MaintMechanical {
		t.Fatalf("maintenance type slice shared with clone")
	}
	if orig.Requester.Name != "Ana Silva" || orig.Requester.CredentialHash[0] != 1 {
		t.Fatalf("requester snapshot shared with clone")
	}
	if !orig.StartedAt.Equal(started) {
		t.Fatalf("startedAt shared with clone")
	}
	if orig.Attachments[0].Content[0] != 0xff {
		t.Fatalf("attachment content shared with clone")
	}
	if orig.Checklist[MaintMechanical][0].Done {
		t.Fatalf("checklist shared with clone")
	}
	if orig.PendingCompletion.Justification != "paperwork lagged" {
		t.Fatalf("pending completion shared with clone")
	}
}

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusNone, StatusPendingApproval, StatusInProgress, StatusPendingCompletionApproval} {
		if s.Terminal() {
			t.Fatalf("status %q reported terminal", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusCanceled} {
		if !s.Terminal() {
			t.Fatalf("status %q reported non-terminal", s)
		}
	}
}

func TestRole_Valid(t *testing.T) {
	t.Parallel()

	if !RoleManager.Valid() {
		t.Fatalf("manager should be valid")
	}
	if Role("superuser").Valid() {
		t.Fatalf("unknown role should be invalid")
	}
}
