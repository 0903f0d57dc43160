package domain

import "testing"

func TestPosterRecord_Kind_ExclusiveAndExhaustive(t *testing.T) {
	cases := []struct {
		name string
		rec  PosterRecord
		want MediaKind
	}{
		{"电影：无 season 有 year", PosterRecord{Title: "Heat", Year: 1995}, KindMovie},
		{"合集：无 season 无 year", PosterRecord{Title: "James Bond Collection"}, KindCollection},
		{"剧集封面：season=Cover", PosterRecord{Title: "Severance", Year: 2022, Season: CoverSlot()}, KindShow},
		{"剧集背景图：season=Backdrop", PosterRecord{Title: "Severance", Season: BackdropSlot()}, KindShow},
		{"季封面：season=2 episode=Cover", PosterRecord{Title: "Severance", Season: NumberSlot(2), Episode: CoverSlot()}, KindShow},
		{"单集：season=2 episode=5", PosterRecord{Title: "Severance", Season: NumberSlot(2), Episode: NumberSlot(5)}, KindShow},
		{"特别篇季：season=0 也是剧集", PosterRecord{Title: "Doctor Who", Season: NumberSlot(0)}, KindShow},
	}

	for _, tc := range cases {
		got := tc.rec.Kind()
		if got != tc.want {
			t.Errorf("%s：Kind()=%q，期望 %q", tc.name, got, tc.want)
		}

		// 互斥：恰好命中三类之一。
		n := 0
		for _, k := range []MediaKind{KindMovie, KindShow, KindCollection} {
			if got == k {
				n++
			}
		}
		if n != 1 {
			t.Errorf("%s：Kind()=%q 不在三类枚举内", tc.name, got)
		}
	}
}

func TestPosterRecord_TargetDesc(t *testing.T) {
	cases := []struct {
		rec  PosterRecord
		want string
	}{
		{PosterRecord{Title: "Heat", Year: 1995}, "Heat (1995)"},
		{PosterRecord{Title: "James Bond Collection"}, "James Bond Collection (collection)"},
		{PosterRecord{Title: "Severance", Season: CoverSlot()}, "Severance (show poster)"},
		{PosterRecord{Title: "Severance", Season: BackdropSlot()}, "Severance (backdrop)"},
		{PosterRecord{Title: "Severance", Season: NumberSlot(2), Episode: CoverSlot()}, "Severance Season 2"},
		{PosterRecord{Title: "Severance", Season: NumberSlot(2), Episode: NumberSlot(5)}, "Severance S2E5"},
	}
	for _, tc := range cases {
		if got := tc.rec.TargetDesc(); got != tc.want {
			t.Errorf("TargetDesc()=%q，期望 %q", got, tc.want)
		}
	}
}

func TestSlot_String(t *testing.T) {
	if NoSlot().String() != "" || NumberSlot(3).String() != "3" || CoverSlot().String() != "Cover" || BackdropSlot().String() != "Backdrop" {
		t.Fatalf("Slot.String 输出不符合预期")
	}
}
