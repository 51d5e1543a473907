// Package stores provides the persistence layer of beehive-resource.
// SQLiteStore keeps jobs, task executions, the job progress trail and managed
// resources with their tags and links. The schema is versioned with embedded
// golang-migrate migrations; file databases run in WAL mode.
package stores
