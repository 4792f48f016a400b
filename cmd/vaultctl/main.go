// Command vaultctl creates and manipulates vaultfs containers.
package main

func main() {
	execute()
}
