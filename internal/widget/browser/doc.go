// Package browser runs the challenge widget in the user's web browser. A
// small local HTTP server hosts one page per rendered widget; the page loads
// the challenge script and reports success, expiry and errors back to the
// server, which turns them into the widget callbacks. Resets are picked up
// by the page on its next poll.
package browser
