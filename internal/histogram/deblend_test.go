package histogram

import "testing"

func TestSourceLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		level   int
		opacity int
		want    int
		wantOK  bool
	}{
		{name: "30 percent blend of 145", level: 178, opacity: 30, want: 145, wantOK: true},
		{name: "50 percent blend of 101", level: 178, opacity: 50, want: 101, wantOK: true},
		{name: "white stays white", level: 255, opacity: 40, want: 255, wantOK: true},
		{name: "dark level has no source", level: 10, opacity: 30, wantOK: false},
		{name: "zero opacity rejected", level: 100, opacity: 0, wantOK: false},
		{name: "full opacity rejected", level: 100, opacity: 100, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := SourceLevel(tt.level, tt.opacity)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && got != tt.want {
				t.Errorf("expected source level %d, got %d", tt.want, got)
			}
		})
	}
}

func TestDeblend(t *testing.T) {
	t.Parallel()

	t.Run("undoes an exact blend", func(t *testing.T) {
		t.Parallel()

		ref := singleLevel(145, 1000)
		target := singleLevel(178, 1000)
		d := Diff(&ref, &target)

		got := Deblend(&target, &d, 30)
		if got != ref {
			t.Error("expected de-blended histogram to equal the reference")
		}
		if s := Score(&ref, &got); s != 0 {
			t.Errorf("expected score 0 after de-blending, got %v", s)
		}
	})

	t.Run("does not mutate the target", func(t *testing.T) {
		t.Parallel()

		ref := singleLevel(145, 1000)
		target := singleLevel(178, 1000)
		before := target
		d := Diff(&ref, &target)

		_ = Deblend(&target, &d, 30)
		if target != before {
			t.Error("target histogram was mutated")
		}
	})

	t.Run("moves at most the available deficit", func(t *testing.T) {
		t.Parallel()

		ref := singleLevel(145, 400)
		ref[178] = [Channels]int{600, 600, 600}
		target := singleLevel(178, 1000)
		d := Diff(&ref, &target) // excess 400 at 178, deficit 400 at 145

		got := Deblend(&target, &d, 30)
		if got[145][Red] != 400 || got[178][Red] != 600 {
			t.Errorf("expected 400/600 split, got %d/%d", got[145][Red], got[178][Red])
		}
		for c := 0; c < Channels; c++ {
			if got.Total(c) != target.Total(c) {
				t.Errorf("channel %d: mass not preserved", c)
			}
		}
	})

	t.Run("channels are de-blended independently", func(t *testing.T) {
		t.Parallel()

		var ref, target Histogram
		ref[145][Red] = 100
		ref[100][Green] = 100
		target[178][Red] = 100
		target[100][Green] = 100
		d := Diff(&ref, &target)

		got := Deblend(&target, &d, 30)
		if got[145][Red] != 100 || got[178][Red] != 0 {
			t.Errorf("expected red mass moved to 145, got %d at 145 and %d at 178", got[145][Red], got[178][Red])
		}
		if got[100][Green] != 100 {
			t.Errorf("expected green untouched, got %d at 100", got[100][Green])
		}
	})

	t.Run("no deficit means no change", func(t *testing.T) {
		t.Parallel()

		ref := singleLevel(100, 10)
		target := singleLevel(100, 20)
		d := Diff(&ref, &target)

		if got := Deblend(&target, &d, 25); got != target {
			t.Error("expected unchanged histogram")
		}
	})

	t.Run("zero-mass histogram is a no-op", func(t *testing.T) {
		t.Parallel()

		var ref, target Histogram
		d := Diff(&ref, &target)
		if got := Deblend(&target, &d, 30); !got.IsZero() {
			t.Error("expected zero histogram")
		}
	})

	t.Run("out of range opacity is a no-op", func(t *testing.T) {
		t.Parallel()

		ref := singleLevel(145, 1000)
		target := singleLevel(178, 1000)
		d := Diff(&ref, &target)

		for _, op := range []int{-5, 0, 100, 150} {
			if got := Deblend(&target, &d, op); got != target {
				t.Errorf("opacity %d: expected unchanged histogram", op)
			}
		}
	})
}
