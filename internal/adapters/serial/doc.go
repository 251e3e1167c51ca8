/*
Package serial drives the controller firmware over a serial link.

Each command is an ASCII code followed by a newline; the firmware answers with a
single byte, '.' for success and '-' for failure. Buttons use fixed codes
("A", "H" for Home, "DL" for the left direction pad...). Sticks use a two byte prefix
("SL" or "SR") followed by raw x and y bytes where (128, 128) is neutral.
*/
package serial
