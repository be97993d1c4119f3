package money

import "github.com/leekchan/accounting"

var rub = accounting.Accounting{
  Symbol:   "₽",
  Format:   "%v %s",
  Thousand: " ",
}

// String renders a price in rubles for user-facing captions.
func String(value int64) string {
  return rub.FormatMoney(value)
}
