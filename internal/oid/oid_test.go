package oid

import (
	"testing"
	"time"
)

func TestNewAtEmbedsTimeAndStaysDistinct(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a, b := NewAt(at), NewAt(at)
	if a == b {
		t.Fatalf("ids for the same second collided")
	}
	if !Time(a).Equal(at) || !Time(b).Equal(at) {
		t.Fatalf("embedded time = %v, %v", Time(a), Time(b))
	}
	if later := NewAt(at.Add(time.Second)); later.Hex() <= a.Hex() {
		t.Fatalf("hex form must sort by creation second")
	}
}

func TestLowerBoundsARange(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lo := Lower(at)
	if lo.Hex() > NewAt(at).Hex() {
		t.Fatalf("Lower must not exceed ids of the same second")
	}
	if lo.Hex() <= NewAt(at.Add(-time.Second)).Hex() {
		t.Fatalf("Lower must exceed ids of the previous second")
	}
	for i := 0; i < 200; i++ {
		if id := NewAt(at); id.Hex() < lo.Hex() {
			t.Fatalf("id %s of the same second sorts below Lower %s", id.Hex(), lo.Hex())
		}
		if id := NewAt(at.Add(-time.Second)); id.Hex() >= lo.Hex() {
			t.Fatalf("id %s of the previous second reaches Lower %s", id.Hex(), lo.Hex())
		}
	}
	if !Time(lo).Equal(at) || lo.Hex()[8:] != "0000000000000000" {
		t.Fatalf("Lower(%v) = %s", at, lo.Hex())
	}
}

func TestParseAndParseList(t *testing.T) {
	id := New()
	got, err := Parse(id.Hex())
	if err != nil || got != id {
		t.Fatalf("Parse(%s) = %v, %v", id.Hex(), got, err)
	}
	if _, err := Parse("nope"); err == nil {
		t.Fatalf("malformed id accepted")
	}
	list := ParseList([]string{id.Hex(), "zz", Nil.Hex()})
	if len(list) != 2 || list[0] != id || list[1] != Nil {
		t.Fatalf("ParseList = %v", list)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("MustParse should panic on malformed input")
		}
	}()
	MustParse("xyz")
}

func TestAge(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := Age(NewAt(at), at.Add(90*time.Second)); got != 90*time.Second {
		t.Fatalf("Age = %v", got)
	}
}
