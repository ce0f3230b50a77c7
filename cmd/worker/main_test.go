package main

import (
	"testing"

	_ "github.com/odyssey-erp/quotedoc/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	main()
}
