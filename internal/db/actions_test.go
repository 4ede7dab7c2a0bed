package db

import (
	"errors"
	"testing"
	"time"
)

func TestCreateAction_Defaults(t *testing.T) {
	db := setupTestDB(t)

	a := createTestAction(t, db, nil)
	if a.ID == "" {
		t.Error("expected a generated ID")
	}
	if a.Status != StatusPendingConfirmation {
		t.Errorf("expected pending_confirmation, got %s", a.Status)
	}

	got, err := db.GetAction(a.ID)
	if err != nil {
		t.Fatalf("failed to get action: %v", err)
	}
	if got.UserID != "user-1" || got.ActionType != "create_task" {
		t.Errorf("unexpected row: %+v", got)
	}
	if got.ConfidenceScore != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", got.ConfidenceScore)
	}
}

func TestCreateAction_RequiresExpiry(t *testing.T) {
	db := setupTestDB(t)

	a := &PendingAction{UserID: "user-1", ActionType: "create_task", RiskLevel: RiskLow}
	if err := db.CreateAction(a); err == nil {
		t.Fatal("expected error when expires_at is unset")
	}
}

func TestGetAction_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetAction("nonexistent")
	if !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("ErrActionNotFound should wrap ErrNotFound")
	}
}

func TestMarkConfirmed(t *testing.T) {
	db := setupTestDB(t)
	a := createTestAction(t, db, nil)

	now := time.Now().UTC()
	if err := db.MarkConfirmed(a.ID, "user-1", now); err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}

	got, err := db.GetAction(a.ID)
	if err != nil {
		t.Fatalf("failed to get action: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", got.Status)
	}
	if got.ConfirmedAt == nil {
		t.Error("expected confirmed_at to be set")
	}
	if got.ConfirmedBy != "user-1" {
		t.Errorf("expected confirmed_by user-1, got %s", got.ConfirmedBy)
	}
}

func TestMarkConfirmed_AlreadyResolved(t *testing.T) {
	db := setupTestDB(t)
	a := createTestAction(t, db, nil)

	now := time.Now().UTC()
	if err := db.MarkCancelled(a.ID, "changed my mind", now); err != nil {
		t.Fatalf("failed to cancel: %v", err)
	}

	err := db.MarkConfirmed(a.ID, "user-1", now)
	if !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("expected ErrStaleTransition, got %v", err)
	}
}

func TestMarkCancelled_FromConfirmed(t *testing.T) {
	db := setupTestDB(t)
	a := createTestAction(t, db, nil)

	now := time.Now().UTC()
	if err := db.MarkConfirmed(a.ID, "user-1", now); err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}
	if err := db.MarkCancelled(a.ID, "too slow", now); err != nil {
		t.Fatalf("cancel from confirmed should succeed: %v", err)
	}

	got, _ := db.GetAction(a.ID)
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if got.CancelReason != "too slow" {
		t.Errorf("expected cancel reason, got %q", got.CancelReason)
	}
}

func TestMarkExecuted_RequiresConfirmed(t *testing.T) {
	db := setupTestDB(t)
	a := createTestAction(t, db, nil)

	now := time.Now().UTC()
	err := db.MarkExecuted(a.ID, `{"sent":true}`, now)
	if !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("executing an unconfirmed action should fail, got %v", err)
	}

	if err := db.MarkConfirmed(a.ID, "user-1", now); err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}
	if err := db.MarkExecuted(a.ID, `{"sent":true}`, now); err != nil {
		t.Fatalf("failed to execute: %v", err)
	}

	got, _ := db.GetAction(a.ID)
	if got.Status != StatusExecuted {
		t.Errorf("expected executed, got %s", got.Status)
	}
	if got.ResultPayload != `{"sent":true}` {
		t.Errorf("unexpected result payload %q", got.ResultPayload)
	}
	if got.ExecutedAt == nil {
		t.Error("expected executed_at to be set")
	}
}

func TestMarkFailed_Terminal(t *testing.T) {
	db := setupTestDB(t)
	a := createTestAction(t, db, nil)

	now := time.Now().UTC()
	if err := db.MarkConfirmed(a.ID, "user-1", now); err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}
	if err := db.MarkFailed(a.ID, "channel function returned 503", now); err != nil {
		t.Fatalf("failed to mark failed: %v", err)
	}

	got, _ := db.GetAction(a.ID)
	if got.Status != StatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("expected error message to be recorded")
	}

	// Terminal means terminal: no further transitions.
	if err := db.MarkExecuted(a.ID, "{}", now); !errors.Is(err, ErrStaleTransition) {
		t.Errorf("expected ErrStaleTransition after failure, got %v", err)
	}
}

func TestMarkExpired(t *testing.T) {
	db := setupTestDB(t)
	a := createTestAction(t, db, func(a *PendingAction) {
		a.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	})

	if err := db.MarkExpired(a.ID); err != nil {
		t.Fatalf("failed to expire: %v", err)
	}
	got, _ := db.GetAction(a.ID)
	if got.Status != StatusExpired {
		t.Errorf("expected expired, got %s", got.Status)
	}

	// Expiring again is a stale transition, not an error on the row.
	if err := db.MarkExpired(a.ID); !errors.Is(err, ErrStaleTransition) {
		t.Errorf("expected ErrStaleTransition, got %v", err)
	}
}

func TestListActionsByStatus(t *testing.T) {
	db := setupTestDB(t)
	createTestAction(t, db, nil)
	createTestAction(t, db, func(a *PendingAction) { a.UserID = "user-2" })
	confirmed := createTestAction(t, db, nil)
	if err := db.MarkConfirmed(confirmed.ID, "user-1", time.Now().UTC()); err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}

	all, err := db.ListActionsByStatus("", StatusPendingConfirmation, 0)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 pending actions, got %d", len(all))
	}

	mine, err := db.ListActionsByStatus("user-2", StatusPendingConfirmation, 0)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("expected 1 action for user-2, got %d", len(mine))
	}
}

func TestListExpiredPending(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC()

	overdue := createTestAction(t, db, func(a *PendingAction) {
		a.ExpiresAt = now.Add(-10 * time.Minute)
	})
	createTestAction(t, db, func(a *PendingAction) {
		a.ExpiresAt = now.Add(time.Hour)
	})

	expired, err := db.ListExpiredPending(now)
	if err != nil {
		t.Fatalf("failed to list expired: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired action, got %d", len(expired))
	}
	if expired[0].ID != overdue.ID {
		t.Errorf("wrong action reported expired")
	}
}

func TestListStaleConfirmed(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC()

	a := createTestAction(t, db, nil)
	if err := db.MarkConfirmed(a.ID, "user-1", now.Add(-time.Hour)); err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}

	fresh := createTestAction(t, db, nil)
	if err := db.MarkConfirmed(fresh.ID, "user-1", now); err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}

	stale, err := db.ListStaleConfirmed(now.Add(-15 * time.Minute))
	if err != nil {
		t.Fatalf("failed to list stale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != a.ID {
		t.Fatalf("expected only the hour-old confirmation, got %d", len(stale))
	}
}
