// Package bot implements the chat commands on top of the queue and the
// settings registry. Every method returns the reply text the chat gateway
// should post; failures are *Error values whose message is that reply.
package bot
