package model

// AuditEntry is one append-only row in 'audit_log'. Every mutating engine
// operation records one, with a JSON detail payload.
type AuditEntry struct {
	ID     int64  `db:"id" json:"id"`
	TS     string `db:"ts" json:"ts"`
	Actor  string `db:"actor" json:"actor"`
	Action string `db:"action" json:"action"`
	Detail string `db:"detail" json:"detail"`
}
