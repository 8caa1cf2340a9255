package constants

// JobStatus is the canonical status for rows in processing_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending    JobStatus = "pending"    // created by the upload collaborator
	JobStatusProcessing JobStatus = "processing" // picked up by a worker, also while a retry is scheduled
	JobStatusCompleted  JobStatus = "completed"  // terminal
	JobStatusFailed     JobStatus = "failed"     // terminal, retries exhausted
)

var JobStatuses = []string{
	string(JobStatusPending),
	string(JobStatusProcessing),
	string(JobStatusCompleted),
	string(JobStatusFailed),
}

// IsTerminal reports whether no transition may leave s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsValid reports whether s is one of the stored statuses.
func (s JobStatus) IsValid() bool {
	for _, v := range JobStatuses {
		if string(s) == v {
			return true
		}
	}
	return false
}
