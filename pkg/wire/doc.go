/*
Package wire implements gearmand's binary frame codec and text-admin line
tokenizer (spec.md §4.1, §6).

A binary frame is a 4-byte magic ("\0REQ" or "\0RES"), a big-endian
command id, a big-endian body length, and a NUL-separated argument list;
the final argument of data-carrying commands is not NUL-terminated and
may contain arbitrary bytes. Decode is incremental and stateless: callers
accumulate bytes (Decoder does this for a stream) and call Decode until it
stops returning ErrNeedMore.

Any connection whose first packet byte is nonzero has switched to the
text-admin dialect for that packet (IsTextAdmin); ParseAdminLine tokenizes
a single admin line into a command name and its arguments.
*/
package wire
