package rule_test

import (
	"testing"

	"github.com/yeisme/statvault/pkg/rule"
)

// uploadForm 用于测试业务规则校验.
type uploadForm struct {
	OwnerID       string `rule:"required,owner_id"`
	StatementDate string `rule:"required,stmt_date"`
}

// TestEngine 测试 Engine 函数返回非 nil 实例.
func TestEngine(t *testing.T) {
	if rule.Engine() == nil {
		t.Error("Engine() returned nil")
	}
}

// TestOwnerIDRule 测试账户标识格式校验.
func TestOwnerIDRule(t *testing.T) {
	valid := []string{"ACCT0001", "USER12345678", "A1B2C3D4E5F6G7H8I9J0"}
	for _, s := range valid {
		if err := rule.ValidateVar(s, "owner_id"); err != nil {
			t.Errorf("expected %q to be valid, got %v", s, err)
		}
	}

	invalid := []string{
		"short1",                // 少于8位
		"lowercase123",          // 小写字母
		"ACCT-0001",             // 非法字符
		"A1B2C3D4E5F6G7H8I9J0X", // 超过20位
		"",
	}
	for _, s := range invalid {
		if err := rule.ValidateVar(s, "owner_id"); err == nil {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

// TestStmtDateRule 测试账单日期格式校验.
func TestStmtDateRule(t *testing.T) {
	if err := rule.ValidateVar("2026-08-31", "stmt_date"); err != nil {
		t.Errorf("expected valid date, got %v", err)
	}

	for _, s := range []string{"2026-13-01", "31-08-2026", "2026/08/31", "not-a-date"} {
		if err := rule.ValidateVar(s, "stmt_date"); err == nil {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

// TestValidateStruct 测试结构体整体校验.
func TestValidateStruct(t *testing.T) {
	ok := uploadForm{OwnerID: "ACCT0001", StatementDate: "2026-08-31"}
	if err := rule.ValidateStruct(ok); err != nil {
		t.Errorf("expected no error for valid form, got %v", err)
	}

	bad := uploadForm{OwnerID: "bad", StatementDate: "2026-08-31"}
	if err := rule.ValidateStruct(bad); err == nil {
		t.Error("expected error for invalid owner id, got nil")
	}

	bad = uploadForm{OwnerID: "ACCT0001", StatementDate: "bad"}
	if err := rule.ValidateStruct(bad); err == nil {
		t.Error("expected error for invalid date, got nil")
	}
}

// TestRegisterAlias 测试注册别名.
func TestRegisterAlias(t *testing.T) {
	rule.RegisterAlias("stmt_owner", "required,owner_id")

	if err := rule.ValidateVar("ACCT0001", "stmt_owner"); err != nil {
		t.Errorf("expected no error with alias, got %v", err)
	}

	if err := rule.ValidateVar("nope", "stmt_owner"); err == nil {
		t.Error("expected error with alias, got nil")
	}
}
