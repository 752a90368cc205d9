package agent

// MaxIntakeDataSize is the maximum allowed size for submitted intake data
// (resume text + job posting text combined). Submissions exceeding this
// limit are rejected at API submission time (HTTP 413).
const MaxIntakeDataSize = 1 * 1024 * 1024 // 1 MB
