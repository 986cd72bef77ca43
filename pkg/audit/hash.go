package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ComputeHash returns the hex SHA-256 of the record's JSON form with Hash
// cleared. RecordedAt is hashed in UTC.
func (r *Record) ComputeHash() (string, error) {
	c := *r
	c.Hash = ""
	c.RecordedAt = c.RecordedAt.UTC()
	data, err := json.Marshal(&c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Seal sets Hash. Records are sealed once, before they are stored.
func (r *Record) Seal() error {
	h, err := r.ComputeHash()
	if err != nil {
		return err
	}
	r.Hash = h
	return nil
}

// CheckIntegrity returns an *IntegrityError when the record is unsealed or
// its content changed after sealing.
func (r *Record) CheckIntegrity() error {
	if r.Hash == "" {
		return &IntegrityError{RecordID: r.ID}
	}
	h, err := r.ComputeHash()
	if err != nil {
		return &IntegrityError{RecordID: r.ID, Stored: r.Hash, Cause: err}
	}
	if h != r.Hash {
		return &IntegrityError{RecordID: r.ID, Stored: r.Hash, Computed: h}
	}
	return nil
}

// Verify reports whether the record still matches its hash. Unsealed
// records never verify.
func (r *Record) Verify() bool {
	return r.CheckIntegrity() == nil
}
