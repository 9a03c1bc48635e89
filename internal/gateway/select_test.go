package gateway

import (
	"testing"

	"github.com/undo-ransomware/pushbackup/internal/policy"
)

var names = []string{"@2020-01-01_00-00-00", "@2020-02-01_00-00-00", "@2020-02-15_00-00-00"}

func TestSelectGenerationsNoTimeUsesLatest(t *testing.T) {
	p, err := selectGenerations(names, selection{space: "s", subpath: "/"}, policy.Restore, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.names) != 1 || p.names[0] != "@2020-02-15_00-00-00" {
		t.Fatalf("got %+v", p)
	}
	if !p.appendSubpath {
		t.Fatalf("expected appendSubpath=true")
	}
}

func TestSelectGenerationsRestoreNoMatchIsError(t *testing.T) {
	_, err := selectGenerations(names, selection{space: "s", time: "@2099", subpath: "/"}, policy.Restore, false, false)
	if err == nil {
		t.Fatalf("expected error for no match")
	}
}

func TestSelectGenerationsVerifyPicksOldestOnMultiMatch(t *testing.T) {
	p, err := selectGenerations(names, selection{space: "s", time: "@2020-02", subpath: "/"}, policy.Verify, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if p.names[0] != "@2020-02-01_00-00-00" {
		t.Fatalf("expected oldest match, got %+v", p)
	}
	if p.info == "" {
		t.Fatalf("expected an info message when verbose and multiple matches")
	}
}

func TestSelectGenerationsVerifyQuietSuppressesInfo(t *testing.T) {
	p, err := selectGenerations(names, selection{space: "s", time: "@2020-02", subpath: "/"}, policy.Verify, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if p.info != "" {
		t.Fatalf("expected no info message when quiet, got %q", p.info)
	}
}

func TestSelectGenerationsListWithRootSubpathReturnsAllMatches(t *testing.T) {
	p, err := selectGenerations(names, selection{space: "s", time: "@2020-02", subpath: "/"}, policy.List, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.names) != 2 || p.appendSubpath {
		t.Fatalf("got %+v", p)
	}
}

func TestSelectGenerationsListWithSubpathRequiresExactlyOne(t *testing.T) {
	_, err := selectGenerations(names, selection{space: "s", time: "@2020-02", subpath: "/etc"}, policy.List, false, false)
	if err == nil {
		t.Fatalf("expected error: 2 matches with a non-root subpath")
	}

	p, err := selectGenerations(names, selection{space: "s", time: "@2020-01", subpath: "/etc"}, policy.List, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.names) != 1 || !p.appendSubpath {
		t.Fatalf("got %+v", p)
	}
}
