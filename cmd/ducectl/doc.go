// Command ducectl runs a composition channel scenario against a compositor.
//
// With -transport local the compositor runs in-process. With -transport
// redis it connects to a compositor served by another ducectl started with
// -serve:
//
//	ducectl -serve -redis localhost:6379 &
//	ducectl -transport redis -redis localhost:6379 -resources 32 -v
//
// -i steps through the scenario in a terminal UI.
package main
