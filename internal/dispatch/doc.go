// Package dispatch owns the message write path.
//
// Send persists first, pushes second, with no transaction spanning the two:
// a crash between append and push delays delivery until the recipient's next
// history fetch, but never loses data. Push failures of any kind are
// absorbed here and never surface to the sender, who only learns whether
// their message was durably saved.
package dispatch
