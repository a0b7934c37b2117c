package api

import (
	"strings"
	"testing"
)

func TestEncodeTwiMLMultipleMessages(t *testing.T) {
	body, err := EncodeTwiML([]string{"Olá!", "Qual horário você prefere?"})
	if err != nil {
		t.Fatalf("EncodeTwiML failed: %v", err)
	}
	s := string(body)
	if strings.Count(s, "<Message>") != 2 {
		t.Errorf("expected 2 Message elements in %q", s)
	}
	if !strings.Contains(s, "<Body>Olá!</Body>") {
		t.Errorf("missing first body in %q", s)
	}
}

func TestEncodeTwiMLDropsBlanks(t *testing.T) {
	body, err := EncodeTwiML([]string{"Hello", "", "World"})
	if err != nil {
		t.Fatalf("EncodeTwiML failed: %v", err)
	}
	if got := strings.Count(string(body), "<Message>"); got != 2 {
		t.Errorf("expected blanks dropped, got %d messages", got)
	}
}

func TestEncodeTwiMLEscapesMarkup(t *testing.T) {
	body, err := EncodeTwiML([]string{"<a&b>"})
	if err != nil {
		t.Fatalf("EncodeTwiML failed: %v", err)
	}
	if !strings.Contains(string(body), "&lt;a&amp;b&gt;") {
		t.Errorf("markup not escaped: %q", string(body))
	}
}

func TestEncodeTwiMLEmpty(t *testing.T) {
	body, err := EncodeTwiML(nil)
	if err != nil {
		t.Fatalf("EncodeTwiML failed: %v", err)
	}
	s := string(body)
	if !strings.Contains(s, "<Response>") && !strings.Contains(s, "<Response/>") {
		t.Errorf("expected well-formed empty envelope, got %q", s)
	}
	if strings.Contains(s, "<Message>") {
		t.Errorf("empty input must produce no messages: %q", s)
	}
}
