package stringer

import (
  "testing"

  "github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
  t.Parallel()

  tests := []struct {
    name string
    in   string
    want string
  }{
    {
      name: "strips markup",
      in:   "<b>Букет</b> <script>alert(1)</script>роз",
      want: "Букет роз",
    },
    {
      name: "unescapes entities",
      in:   "Розы &amp; пионы &laquo;Весна&raquo;",
      want: "Розы & пионы «Весна»",
    },
    {
      name: "squeezes whitespace",
      in:   "  ул.   Стара\n\nЗагора,  25  ",
      want: "ул. Стара Загора, 25",
    },
  }

  for _, tt := range tests {
    tt := tt
    t.Run(tt.name, func(t *testing.T) {
      t.Parallel()
      assert.Equal(t, tt.want, SanitizeString(tt.in))
    })
  }
}

func TestDigits(t *testing.T) {
  t.Parallel()

  assert.Equal(t, "79991234567", Digits("+7 (999) 123-45-67"))
  assert.Equal(t, "", Digits("нет цифр"))
}

func TestToTitle(t *testing.T) {
  t.Parallel()

  assert.Equal(t, "Волгарь", ToTitle("волгарь"))
  assert.Equal(t, "Новая Самара", ToTitle("новая самара"))
}

func TestTruncate(t *testing.T) {
  t.Parallel()

  assert.Equal(t, "букет", Truncate("букет", 10))
  assert.Equal(t, "бук", Truncate("букет", 3))
}
