package appointment

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from string
		to   string
		want bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusPending, true},
		{StatusAccepted, StatusPending, false},
		{StatusAccepted, StatusCancelled, false},
		{StatusRejected, StatusAccepted, false},
		{StatusCancelled, StatusPending, false},
		{StatusPending, "booked", false},
		{"", StatusAccepted, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsDoctorDecision(t *testing.T) {
	for _, status := range []string{StatusAccepted, StatusRejected, StatusPending} {
		if !IsDoctorDecision(status) {
			t.Errorf("expected %q to be a doctor decision", status)
		}
	}
	if IsDoctorDecision(StatusCancelled) {
		t.Errorf("cancellation is not a doctor decision")
	}
	if IsDoctorDecision("approved") {
		t.Errorf("unknown status accepted as doctor decision")
	}
}
