package moderation

import (
	"strings"
	"testing"
)

func TestValidateCleaning(t *testing.T) {
	v := NewBasicValidator()

	res := v.Validate("  hello\x00world  ")
	if !res.OK || res.Cleaned != "helloworld" {
		t.Fatalf("res = %+v", res)
	}

	// 换行与制表保留
	res = v.Validate("line1\nline2\tend")
	if !res.OK || res.Cleaned != "line1\nline2\tend" {
		t.Fatalf("res = %+v", res)
	}
}

func TestValidateRejects(t *testing.T) {
	v := NewBasicValidator()

	if res := v.Validate("   "); res.OK {
		t.Fatal("whitespace-only must be rejected")
	}
	if res := v.Validate("\x01\x02"); res.OK {
		t.Fatal("control-only must be rejected")
	}
	if res := v.Validate(strings.Repeat("长", MaxMessageRunes+1)); res.OK {
		t.Fatal("overlong must be rejected")
	}
	// 恰好到上限仍然放行
	if res := v.Validate(strings.Repeat("长", MaxMessageRunes)); !res.OK {
		t.Fatalf("at-limit rejected: %+v", res)
	}
}

func TestValidateBlocklist(t *testing.T) {
	v := &BasicValidator{Blocklist: []string{"spam"}}
	if res := v.Validate("buy SPAM now"); res.OK {
		t.Fatal("blocklist hit must be rejected (case-insensitive)")
	}
	if res := v.Validate("perfectly fine"); !res.OK {
		t.Fatalf("clean text rejected: %+v", res)
	}
}
