package workers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractHashtag(t *testing.T) {
	cases := map[string]string{
		"fiz minha #Corrida hoje":  "corrida",
		"#água":                    "agua",
		"treino concluído":         "treino",
		"done":                     "done",
		"":                         "",
		"hoje foi dia de #leitura": "leitura",
	}
	for text, want := range cases {
		assert.Equal(t, want, ExtractHashtag(text), "text=%q", text)
	}
}
