package db

import (
	"errors"
	"testing"
)

func TestAddContact_Validation(t *testing.T) {
	db := setupTestDB(t)

	if err := db.AddContact(&Contact{Name: "Sam"}); err == nil {
		t.Fatal("expected error without user ID")
	}
	if err := db.AddContact(&Contact{UserID: "user-1"}); err == nil {
		t.Fatal("expected error without name")
	}
	if err := db.AddContact(&Contact{UserID: "user-1", Name: "Sam"}); err == nil {
		t.Fatal("expected error without email or phone")
	}
}

func TestFindContactByRecipient(t *testing.T) {
	db := setupTestDB(t)

	c := &Contact{UserID: "user-1", Name: "Sam Doe", Email: "sam@example.com", Phone: "+15550100"}
	if err := db.AddContact(c); err != nil {
		t.Fatalf("failed to add contact: %v", err)
	}

	for _, recipient := range []string{"sam@example.com", "SAM@example.com", "+15550100", "sam doe"} {
		got, err := db.FindContactByRecipient("user-1", recipient)
		if err != nil {
			t.Fatalf("lookup %q failed: %v", recipient, err)
		}
		if got.ID != c.ID {
			t.Errorf("lookup %q returned wrong contact", recipient)
		}
	}

	if _, err := db.FindContactByRecipient("user-1", "stranger@example.com"); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected ErrContactNotFound, got %v", err)
	}

	// Contacts are per user.
	if _, err := db.FindContactByRecipient("user-2", "sam@example.com"); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected ErrContactNotFound for other user, got %v", err)
	}
}

func TestListAndDeleteContacts(t *testing.T) {
	db := setupTestDB(t)

	a := &Contact{UserID: "user-1", Name: "Alice", Email: "alice@example.com"}
	b := &Contact{UserID: "user-1", Name: "Bob", Phone: "+15550101"}
	for _, c := range []*Contact{b, a} {
		if err := db.AddContact(c); err != nil {
			t.Fatalf("failed to add contact: %v", err)
		}
	}

	contacts, err := db.ListContacts("user-1")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(contacts) != 2 || contacts[0].Name != "Alice" {
		t.Fatalf("expected Alice first of 2, got %d", len(contacts))
	}

	if err := db.DeleteContact("user-1", a.ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := db.DeleteContact("user-1", a.ID); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected ErrContactNotFound, got %v", err)
	}

	// A user cannot delete another user's contact.
	if err := db.DeleteContact("user-2", b.ID); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected ErrContactNotFound, got %v", err)
	}
}
