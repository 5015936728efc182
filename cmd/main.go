package main

import (
	"github.com/dijistore/storefront/internal/app"
	"github.com/dijistore/storefront/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
