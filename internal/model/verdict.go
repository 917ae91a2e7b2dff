package model

type Verdict string

const (
	VerdictSafe    Verdict = "SAFE"
	VerdictWarning Verdict = "WARNING"
	VerdictDanger  Verdict = "DANGER"
	VerdictUnknown Verdict = "UNKNOWN"
)

// DangerThreshold is the number of flagging engines above which a URL is
// considered dangerous.
const DangerThreshold = 5

// ComputeVerdict derives the verdict from engine consensus, then lets a
// high-severity brand impersonation lift SAFE to WARNING. Phishing alone
// never produces DANGER and never lowers a verdict.
func ComputeVerdict(stats Stats, alert PhishingAlert) Verdict {
	threats := stats.ThreatCount()

	verdict := VerdictSafe
	switch {
	case threats > DangerThreshold:
		verdict = VerdictDanger
	case threats > 0:
		verdict = VerdictWarning
	}

	if alert.Detected && alert.Severity == SeverityHigh && verdict == VerdictSafe {
		verdict = VerdictWarning
	}
	return verdict
}

// Phase is a step of the scan state machine.
type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhaseUnshortening Phase = "UNSHORTENING"
	PhaseScanning     Phase = "SCANNING"
	PhaseAnalyzing    Phase = "ANALYZING"
	PhaseComplete     Phase = "COMPLETE"
	PhaseError        Phase = "ERROR"
)

// Terminal reports whether no further transition can follow.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}
