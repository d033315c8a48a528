package warning

import "testing"

func TestRateLimitExceededIsOnlySilentWarning(t *testing.T) {
	for _, w := range []Warning{HitDownloadSlotLimit, ConnectivityIssueDetected, StoppedPeerDoesntExist} {
		if w.IsSilent() {
			t.Fatalf("expected %v to not be silent", w)
		}
	}

	if !RateLimitExceeded.IsSilent() {
		t.Fatalf("expected RateLimitExceeded to be silent")
	}
}

func TestIntoMessageEmptyCollection(t *testing.T) {
	var c Collection

	if _, ok := c.IntoMessage(); ok {
		t.Fatalf("expected no message for an empty collection")
	}
}

func TestIntoMessageAllSilent(t *testing.T) {
	var c Collection
	c.Add(RateLimitExceeded)

	if _, ok := c.IntoMessage(); ok {
		t.Fatalf("expected no message when every warning is silent")
	}
}

func TestIntoMessageJoinsNonSilentWarnings(t *testing.T) {
	var c Collection
	c.Add(HitDownloadSlotLimit)
	c.Add(ConnectivityIssueDetected)

	got, ok := c.IntoMessage()
	if !ok {
		t.Fatalf("expected a message")
	}

	want := HitDownloadSlotLimit.String() + "; " + ConnectivityIssueDetected.String()
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIntoMessageSkipsSilentAmongMixed(t *testing.T) {
	var c Collection
	c.Add(RateLimitExceeded)
	c.Add(StoppedPeerDoesntExist)

	got, ok := c.IntoMessage()
	if !ok {
		t.Fatalf("expected a message")
	}

	if got != StoppedPeerDoesntExist.String() {
		t.Fatalf("got %q, want only the non-silent warning", got)
	}
}

func TestStoppedPeerDoesntExistIsVisible(t *testing.T) {
	var c Collection
	c.Add(StoppedPeerDoesntExist)

	got, ok := c.IntoMessage()
	if !ok {
		t.Fatalf("expected StoppedPeerDoesntExist to produce a visible message")
	}

	if got == "" {
		t.Fatalf("expected non-empty message")
	}
}

func TestHasAndIsEmpty(t *testing.T) {
	var c Collection

	if !c.IsEmpty() {
		t.Fatalf("expected zero value collection to be empty")
	}

	c.Add(ConnectivityIssueDetected)

	if c.IsEmpty() {
		t.Fatalf("expected collection to be non-empty after Add")
	}

	if !c.Has(ConnectivityIssueDetected) {
		t.Fatalf("expected Has to find the added warning")
	}

	if c.Has(HitDownloadSlotLimit) {
		t.Fatalf("expected Has to report false for a warning never added")
	}
}

func TestMaxByteLengthScalesWithCount(t *testing.T) {
	var c Collection
	c.Add(RateLimitExceeded)
	c.Add(HitDownloadSlotLimit)

	if got, want := c.MaxByteLength(), 2*maxWarningLen; got != want {
		t.Fatalf("MaxByteLength() = %d, want %d", got, want)
	}
}
