package util

import (
	"reflect"
	"testing"
)

func TestExpandPortRange(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  []string
	}{
		{"simple range", "1/2/1-4", []string{"1/2/1", "1/2/2", "1/2/3", "1/2/4"}},
		{"single element range", "2/1/7-7", []string{"2/1/7"}},
		{"plain port passes through", "1/1/24", []string{"1/1/24"}},
		{"non-port token passes through", "all", []string{"all"}},
		{"inverted range passes through", "1/1/5-2", []string{"1/1/5-2"}},
		{"two-level token passes through", "1/24", []string{"1/24"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandPortRange(tt.token)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandPortRange(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}
