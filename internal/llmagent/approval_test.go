package llmagent

import "testing"

func TestApprovalGateAllowToolAlwaysSkipsDeciderAfterFirst(t *testing.T) {
	calls := 0
	gate := NewApprovalGate(func(req ApprovalRequest) ApprovalDecision {
		calls++
		return AllowToolAlways
	})

	d1 := gate.Resolve(ApprovalRequest{ToolName: "exec"})
	if d1 != AllowToolAlways {
		t.Fatalf("expected AllowToolAlways, got %v", d1)
	}
	d2 := gate.Resolve(ApprovalRequest{ToolName: "exec"})
	if d2 != AllowOnce {
		t.Fatalf("expected second resolve to short-circuit to AllowOnce, got %v", d2)
	}
	if calls != 1 {
		t.Fatalf("expected decider called exactly once, got %d", calls)
	}

	// A different tool still needs its own decision.
	d3 := gate.Resolve(ApprovalRequest{ToolName: "analyze"})
	if d3 != AllowToolAlways {
		t.Fatalf("expected a fresh tool to consult the decider again, got %v", d3)
	}
	if calls != 2 {
		t.Fatalf("expected decider called twice total, got %d", calls)
	}
}

func TestApprovalGateScopedOverrideRestoresOnExit(t *testing.T) {
	calls := 0
	gate := NewApprovalGate(func(req ApprovalRequest) ApprovalDecision {
		calls++
		return DenyOnce
	})

	release := gate.ScopedOverride()
	d := gate.Resolve(ApprovalRequest{ToolName: "report_get"})
	if d != AllowOnce {
		t.Fatalf("expected override to force AllowOnce, got %v", d)
	}
	if calls != 0 {
		t.Fatalf("expected decider not consulted during override, got %d calls", calls)
	}
	release()

	d2 := gate.Resolve(ApprovalRequest{ToolName: "report_get"})
	if d2 != DenyOnce {
		t.Fatalf("expected decider consulted again after release, got %v", d2)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one decider call after release, got %d", calls)
	}
}

func TestApprovalGateCancelRunPropagates(t *testing.T) {
	gate := NewApprovalGate(func(req ApprovalRequest) ApprovalDecision {
		return CancelRun
	})
	if d := gate.Resolve(ApprovalRequest{ToolName: "exec"}); d != CancelRun {
		t.Fatalf("expected CancelRun, got %v", d)
	}
}
