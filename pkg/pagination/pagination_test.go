package pagination

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name     string
		in       Params
		wantPage int
		wantSize int
	}{
		{name: "zero values", in: Params{}, wantPage: 1, wantSize: DefaultPageSize},
		{name: "negative page", in: Params{Page: -3, PageSize: 10}, wantPage: 1, wantSize: 10},
		{name: "oversized page size", in: Params{Page: 2, PageSize: 5000}, wantPage: 2, wantSize: MaxPageSize},
		{name: "in range", in: Params{Page: 4, PageSize: 50}, wantPage: 4, wantSize: 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalize()
			if got.Page != tc.wantPage || got.PageSize != tc.wantSize {
				t.Fatalf("Normalize() = %+v, want page=%d size=%d", got, tc.wantPage, tc.wantSize)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	p := Params{Page: 3, PageSize: 20}
	if got := p.Offset(); got != 40 {
		t.Fatalf("Offset() = %d, want 40", got)
	}
}

func TestNewPage(t *testing.T) {
	page := NewPage([]string{"a", "b"}, 41, Params{Page: 1, PageSize: 20})
	if page.TotalPages != 3 {
		t.Fatalf("expected 3 total pages, got %d", page.TotalPages)
	}
	if page.Total != 41 {
		t.Fatalf("expected total 41, got %d", page.Total)
	}

	empty := NewPage[string](nil, 0, Params{})
	if empty.Items == nil {
		t.Fatal("expected empty items slice, got nil")
	}
	if empty.TotalPages != 0 {
		t.Fatalf("expected 0 total pages, got %d", empty.TotalPages)
	}
}
