/*
Package object is a [gmodule.Backend] for Go relocatable object files, built on [goloader].

Objects are named <name>.o ([gmodule.ConventionObject]) and their package path defaults to
<name>. Symbols may be requested bare (Run) or qualified (sample.Run).

# Notes

 1. The host executable must be compiled with a go sdk prepared for goloader.
 2. Only exported functions link reliably; fetch them with [Func] right before use.

[goloader]: https://github.com/pkujhd/goloader
*/
package object
