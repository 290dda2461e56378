package tokens

import "testing"

func TestCharEstimatorEmpty(t *testing.T) {
	e := NewCharEstimator(0)
	if got := e.Estimate(""); got != 0 {
		t.Errorf("Estimate(\"\") = %d, want 0", got)
	}
}

func TestCharEstimatorRoundsUp(t *testing.T) {
	e := NewCharEstimator(4)
	// 10 chars at 4 chars/token estimates to 3, never 2.
	if got := e.Estimate("ten chars."); got != 3 {
		t.Errorf("Estimate = %d, want 3", got)
	}
}

func TestCharEstimatorDefaultRatio(t *testing.T) {
	e := NewCharEstimator(-1)
	if e.CharsPerToken != 4.0 {
		t.Errorf("CharsPerToken = %v, want 4.0", e.CharsPerToken)
	}
}

func TestCharEstimatorScalesWithLength(t *testing.T) {
	e := NewCharEstimator(0)
	short := e.Estimate("a short line")
	long := e.Estimate("a considerably longer line with many more characters in it")
	if long <= short {
		t.Errorf("long = %d, short = %d; want long > short", long, short)
	}
}

func TestNewEstimatorNeverNil(t *testing.T) {
	if NewEstimator() == nil {
		t.Fatal("NewEstimator returned nil")
	}
}
