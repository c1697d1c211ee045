// Copyright 2025 James Ross
package store

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const timeLayout = time.RFC3339Nano

// toHash flattens a Job into the field map stored by HSET.
func toHash(j Job) map[string]interface{} {
	return map[string]interface{}{
		"id":              j.ID.String(),
		"kind":            string(j.Kind),
		"state":           string(j.State),
		"library_id":      j.LibraryID,
		"priority":        strconv.Itoa(int(j.Priority)),
		"payload":         base64.StdEncoding.EncodeToString(j.Payload),
		"dedupe_key":      j.DedupeKey,
		"dependency_key":  j.DependencyKey,
		"correlation_id":  j.CorrelationID.String(),
		"attempts":        strconv.Itoa(j.Attempts),
		"max_attempts":    strconv.Itoa(j.MaxAttempts),
		"not_before":      j.NotBefore.Format(timeLayout),
		"created_at":      j.CreatedAt.Format(timeLayout),
		"created_at_unix": strconv.FormatInt(j.CreatedAt.Unix(), 10),
		"updated_at":      j.UpdatedAt.Format(timeLayout),
		"lease_owner":     j.LeaseOwner,
		"lease_expiry":    j.LeaseExpiry.Format(timeLayout),
		"last_error":      j.LastError,
	}
}

// fromHash rehydrates a Job from an HGETALL result. Malformed numeric or time
// fields are left at their zero value rather than failing the whole read.
func fromHash(m map[string]string) Job {
	var j Job
	j.ID, _ = uuid.Parse(m["id"])
	j.Kind = JobKind(m["kind"])
	j.State = State(m["state"])
	j.LibraryID = m["library_id"]
	if p, err := strconv.Atoi(m["priority"]); err == nil {
		j.Priority = Priority(p)
	}
	if payload, err := base64.StdEncoding.DecodeString(m["payload"]); err == nil {
		j.Payload = payload
	}
	j.DedupeKey = m["dedupe_key"]
	j.DependencyKey = m["dependency_key"]
	j.CorrelationID, _ = uuid.Parse(m["correlation_id"])
	j.Attempts, _ = strconv.Atoi(m["attempts"])
	j.MaxAttempts, _ = strconv.Atoi(m["max_attempts"])
	j.NotBefore, _ = time.Parse(timeLayout, m["not_before"])
	j.CreatedAt, _ = time.Parse(timeLayout, m["created_at"])
	j.UpdatedAt, _ = time.Parse(timeLayout, m["updated_at"])
	j.LeaseOwner = m["lease_owner"]
	j.LeaseExpiry, _ = time.Parse(timeLayout, m["lease_expiry"])
	j.LastError = m["last_error"]
	return j
}

func readyScore(priority Priority, createdAt time.Time) float64 {
	return float64(priority)*1e13 + float64(createdAt.Unix())
}
