// Command formalink runs the bridge between the Autodesk Forma connector and a
// local scene document.
package main

func main() {
	Execute()
}
