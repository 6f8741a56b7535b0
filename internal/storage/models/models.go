package models

import "time"

const UserTypePatient = "patient"

type User struct {
	ID           string    `json:"_id"`
	FullName     string    `json:"fullName"`
	Age          int       `json:"age"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	UserType     string    `json:"userType"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type DiagnosisEntry struct {
	Disease    string  `json:"disease"`
	Percentage float64 `json:"percentage"`
}

// Report is one stored prediction. Diagnosis is sorted by Percentage,
// highest first, and Predicted names its first entry.
type Report struct {
	ID         string           `json:"_id"`
	UserID     string           `json:"userId"`
	Symptoms   []string         `json:"symptoms"`
	Diagnosis  []DiagnosisEntry `json:"diagnosis"`
	Predicted  string           `json:"predicted"`
	Confidence float64          `json:"confidence"`
	Date       string           `json:"date"`
	Time       string           `json:"time"`
	Status     bool             `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// Top returns at most n diagnosis entries, highest first.
func (r *Report) Top(n int) []DiagnosisEntry {
	if n < 0 {
		n = 0
	}
	if n > len(r.Diagnosis) {
		n = len(r.Diagnosis)
	}
	out := make([]DiagnosisEntry, n)
	copy(out, r.Diagnosis[:n])
	return out
}
