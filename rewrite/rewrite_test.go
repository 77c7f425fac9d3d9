package rewrite_test

import (
	"regexp"
	"testing"

	"github.com/mkot2/goof2/rewrite"
)

func assertEqual(t *testing.T, name, expected, got string) {
	if expected != got {
		t.Errorf("%v:\nExpected: %q\nGot:      %q", name, expected, got)
	}
}

func TestStripRemovesNonTokens(t *testing.T) {
	got := rewrite.Rewrite("he+l+lo [world]", false, false, nil)
	assertEqual(t, "strip", "++[]", got)
}

func TestRunBalanceCancels(t *testing.T) {
	got := rewrite.Rewrite("+++--", true, false, nil)
	assertEqual(t, "run-balance", "+", got)
}

func TestRunBalanceFullCancel(t *testing.T) {
	got := rewrite.Rewrite("++--", true, false, nil)
	assertEqual(t, "run-balance", "", got)
}

func TestClearLoopPlus(t *testing.T) {
	got := rewrite.Rewrite("[+]", true, false, nil)
	assertEqual(t, "clear-loop", "C", got)
}

func TestClearLoopMinus(t *testing.T) {
	got := rewrite.Rewrite("[-]", true, false, nil)
	assertEqual(t, "clear-loop", "C", got)
}

func TestClearLoopChainAbsorbsStray(t *testing.T) {
	got := rewrite.Rewrite("[-]+-[-]", true, false, nil)
	assertEqual(t, "clear-loop chain", "C", got)
}

func TestScanLoopRight(t *testing.T) {
	got := rewrite.Rewrite("[>]", true, false, nil)
	assertEqual(t, "scan-loop right", ">R", got)
}

func TestScanLoopLeftStride2(t *testing.T) {
	got := rewrite.Rewrite("[<<]", true, false, nil)
	assertEqual(t, "scan-loop left stride 2", "<<L", got)
}

func TestScanClearLoop(t *testing.T) {
	got := rewrite.Rewrite("[->>]", true, false, nil)
	assertEqual(t, "scan-clear-loop", "C>>R", got)
}

func TestInputTrim(t *testing.T) {
	got := rewrite.Rewrite("+++,", true, false, nil)
	assertEqual(t, "input-trim", ",", got)
}

func TestInputTrimAfterClear(t *testing.T) {
	got := rewrite.Rewrite("[-]+,", true, false, nil)
	assertEqual(t, "input-trim after clear", ",", got)
}

func TestLeadingSetInsertsMarker(t *testing.T) {
	got := rewrite.Rewrite("[-]+++", true, false, nil)
	assertEqual(t, "leading-set", "CS+++", got)
}

func TestLeadingSetSuppressedInTerminalMode(t *testing.T) {
	got := rewrite.Rewrite("[-]+++", true, true, nil)
	assertEqual(t, "leading-set suppressed", "C+++", got)
}

func TestCopyLoopSingleTarget(t *testing.T) {
	got := rewrite.Rewrite("[-<+>]", true, false, nil)
	assertEqual(t, "copy-loop", "<+P>C", got)
}

func TestCopyLoopMultipleTargets(t *testing.T) {
	got := rewrite.Rewrite("[-<+>>+++<]", true, false, nil)
	assertEqual(t, "copy-loop multi", "<+P>>+++P<C", got)
}

func TestCopyLoopRejectsNonZeroNetMotion(t *testing.T) {
	got := rewrite.Rewrite("[-<+]", true, false, nil)
	// No zero-net-motion copy idiom: falls through untouched as a plain
	// loop (brackets kept, body run-balanced already).
	assertEqual(t, "copy-loop non-matching", "[-<+]", got)
}

func TestClearCoalesce(t *testing.T) {
	got := rewrite.Rewrite("[-][-][-]", true, false, nil)
	assertEqual(t, "clear-coalesce", "C", got)
}

func TestRewriteIsDeterministic(t *testing.T) {
	src := "++++++++[>++++++++<-]>+.[-]>[-]>[-]"
	once := rewrite.Rewrite(src, true, false, nil)
	twice := rewrite.Rewrite(once, true, false, nil)
	// Rewriting already-rewritten output through Strip again must at least
	// not corrupt the synthetic markers Strip doesn't recognize... Strip
	// only keeps the eight raw tokens, so re-running the full pipeline on
	// already-synthetic output isn't meaningful; what is checked instead is
	// determinism at the Rewrite(src) level: same input, same flags, same output.
	again := rewrite.Rewrite(src, true, false, nil)
	assertEqual(t, "determinism", once, again)
	_ = twice
}

func TestOptimizeOffIsJustStrip(t *testing.T) {
	got := rewrite.Rewrite("[-]+++", false, false, nil)
	assertEqual(t, "optimize off", "[-]+++", got)
}

func TestRuleTableAppliesBeforeAndAfter(t *testing.T) {
	rules := rewrite.RuleTable{
		{Pattern: regexp.MustCompile(`X`), Replacement: "+"},
	}
	got := rewrite.Rewrite("X", true, false, rules)
	assertEqual(t, "rule table pre-pass", "+", got)

	// A rule matching only a synthetic marker can fire only after pass 8.
	after := rewrite.RuleTable{
		{Pattern: regexp.MustCompile(`C`), Replacement: "0"},
	}
	got = rewrite.Rewrite("[-]", true, false, after)
	assertEqual(t, "rule table post-pass", "0", got)
}

// The decrement sits at the end of this loop body, not the start, so the
// copy-loop pass does not recognize it and the text is left as it is.
func TestHelloWorldShapeIsLeftIntact(t *testing.T) {
	got := rewrite.Rewrite("++++++++[>++++++++<-]>+.", true, false, nil)
	assertEqual(t, "hello-world shape", "++++++++[>++++++++<-]>+.", got)
}
