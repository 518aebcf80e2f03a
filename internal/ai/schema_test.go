package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateResultObject(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"object", `{"document_type":"invoice","total":42}`, false},
		{"empty object", `{}`, false},
		{"nested", `{"parties":{"seller":"x"},"items":[1,2]}`, false},
		{"array", `[1,2,3]`, true},
		{"string", `"just text"`, true},
		{"number", `42`, true},
		{"null", `null`, true},
		{"prose", `the model apologized instead of answering`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResultObject([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
