package main

import (
	"reflect"
	"testing"
)

func TestSplitOrigins(t *testing.T) {
	got := splitOrigins(" https://app.example.com, http://localhost:5173 ,,")
	want := []string{"https://app.example.com", "http://localhost:5173"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if origins := splitOrigins(""); origins != nil {
		t.Fatalf("expected nil for empty input, got %v", origins)
	}
}
