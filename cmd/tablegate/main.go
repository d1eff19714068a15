// Package main is the entry point for tablegate.
//
//	@title			tablegate
//	@version		1.0
//	@description	HTTP server that exposes one endpoint per database table and reconfigures itself when a table is defined.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:3000
//	@BasePath		/
package main

func main() {
	Execute()
}
