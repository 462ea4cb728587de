// Package httpapi exposes the account, session, transfer and balance
// services over JSON HTTP. Handlers translate classified faults to status
// codes; they never add authorization logic of their own.
package httpapi
