package gateway

import "testing"

func TestParsePath(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want selection
	}{
		{"bare space, no slash at all", "root", selection{space: "root", time: "", subpath: "/"}},
		{"space with subpath", "space/etc/passwd", selection{space: "space", time: "", subpath: "/etc/passwd"}},
		{"space and time", "space@2011-01-01/etc/passwd", selection{space: "space", time: "@2011-01-01", subpath: "/etc/passwd"}},
		{"at-latest means unselected", "space@latest/etc", selection{space: "space", time: "", subpath: "/etc"}},
		{"dot space means default", "./etc", selection{space: "default", time: "", subpath: "/etc"}},
		{"empty space before at", "@2011-01-01/", selection{space: "default", time: "@2011-01-01", subpath: "/"}},
		{"trailing slash means root subpath", "root/", selection{space: "root", time: "", subpath: "/"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := parsePath(c.in)
			if got != c.want {
				t.Fatalf("parsePath(%q) = %+v, want %+v", c.in, got, c.want)
			}
		})
	}
}
