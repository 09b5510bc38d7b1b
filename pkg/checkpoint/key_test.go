package checkpoint

import (
	"strings"
	"testing"
)

func TestKey_String(t *testing.T) {
	base := Key{File: "/data/v.json", Method: "put", EndpointTemplate: "variants/{{id}}"}

	got := base.String()
	if !strings.HasPrefix(got, "ajaxctl:checkpoint:PUT:") {
		t.Errorf("String() = %q, want prefix ajaxctl:checkpoint:PUT:", got)
	}
	if got != base.String() {
		t.Error("String() is not deterministic")
	}

	tests := []struct {
		name  string
		other Key
	}{
		{"other file", Key{File: "/data/w.json", Method: "put", EndpointTemplate: "variants/{{id}}"}},
		{"other method", Key{File: "/data/v.json", Method: "DELETE", EndpointTemplate: "variants/{{id}}"}},
		{"other endpoint", Key{File: "/data/v.json", Method: "put", EndpointTemplate: "products/{{id}}"}},
		{"with body", Key{File: "/data/v.json", Method: "put", EndpointTemplate: "variants/{{id}}", BodyTemplate: "{}"}},
		{"shifted boundary", Key{File: "/data/v.jsonvariants/", Method: "put", EndpointTemplate: "{{id}}"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.other.String() == got {
				t.Errorf("String() collides with base: %q", got)
			}
		})
	}
}
