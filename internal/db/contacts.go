// Package db provides contact book CRUD operations.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Contact is an entry in a user's contact book. Outreach to a third party
// (send_email_to_contact) must resolve its recipient here.
type Contact struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrContactNotFound is returned when no contact matches.
var ErrContactNotFound = fmt.Errorf("contact %w", ErrNotFound)

// AddContact inserts a contact. Requires a name and at least one of email/phone.
func (db *DB) AddContact(c *Contact) error {
	if c.UserID == "" {
		return fmt.Errorf("contact requires a user ID")
	}
	if c.Name == "" {
		return fmt.Errorf("contact requires a name")
	}
	if c.Email == "" && c.Phone == "" {
		return fmt.Errorf("contact requires an email or phone")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	result, err := db.Exec(`
		INSERT INTO contacts (user_id, name, email, phone, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.UserID, c.Name, c.Email, c.Phone, c.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("adding contact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	c.ID = id
	return nil
}

// ListContacts returns a user's contacts ordered by name.
func (db *DB) ListContacts(userID string) ([]*Contact, error) {
	rows, err := db.Query(`
		SELECT id, user_id, name, email, phone, created_at
		FROM contacts WHERE user_id = ?
		ORDER BY name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c := &Contact{}
		var createdAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning contact row: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contacts: %w", err)
	}
	return contacts, nil
}

// FindContactByRecipient resolves a recipient string (email, phone, or exact
// name) against a user's contact book. Matching is case-insensitive.
func (db *DB) FindContactByRecipient(userID, recipient string) (*Contact, error) {
	needle := strings.ToLower(strings.TrimSpace(recipient))
	if needle == "" {
		return nil, ErrContactNotFound
	}
	c := &Contact{}
	var createdAt string
	err := db.QueryRow(`
		SELECT id, user_id, name, email, phone, created_at
		FROM contacts
		WHERE user_id = ? AND (LOWER(email) = ? OR phone = ? OR LOWER(name) = ?)
		LIMIT 1
	`, userID, needle, strings.TrimSpace(recipient), needle).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("resolving recipient: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// DeleteContact removes a contact owned by the user.
func (db *DB) DeleteContact(userID string, id int64) error {
	result, err := db.Exec(`DELETE FROM contacts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting contact: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return ErrContactNotFound
	}
	return nil
}
