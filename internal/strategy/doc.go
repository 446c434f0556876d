// Package strategy implements the two-leg open/close arbitrage protocol:
// the core state machine that drives a hedged pair of positions across the
// DEX (maker leg) and the CEX (taker leg) whenever the fee-adjusted
// inter-venue spread clears a configured threshold.
//
// # States
//
// Exactly one of ten states is active at a time:
//
//	OpenCondition, OpenLeg1Waiting, OpenLeg1Canceling,
//	OpenLeg2Waiting, OpenLeg2Chasing,
//	CloseCondition, CloseLeg1Waiting, CloseLeg1Canceling,
//	CloseLeg2Waiting, CloseLeg2Chasing
//
// Leg1 is always the DEX maker order; Leg2 is always the CEX taker order.
// An Open cycle buys DEX / sells CEX; a Close cycle sells DEX / buys CEX —
// the two are mirror images of the same machine, distinguished internally
// by whether the active cycle is opening or closing a hedge.
//
// # Transitions
//
// All transitions fire on one of three events, always under the Machine's
// single mutex:
//
//  1. A signal tick (from the market-data adapter / tick scheduler):
//     only observed in a Condition state. If the fee-adjusted edge on the
//     freshest PriceBoard snapshot strictly exceeds MinSpreadThreshold, the
//     machine places a DEX maker order at the current DEX bid (open) or ask
//     (close) for CycleQty and moves to Leg1Waiting. A placement failure
//     (including quantity rounding to zero) leaves the machine in the
//     Condition state.
//
//  2. A user-stream fill event, correlated by order ID against the current
//     slot. Events for any other order ID are logged and dropped — this
//     covers both stale reconnect replay and the intentional "cancel race
//     lost" case (S4): once Leg2 is placed under a new client ID, a late
//     cancel-ack for the superseded Leg1 order no longer matches the slot
//     and is silently ignored.
//
//  3. A timeout tick (1 Hz, from the tick scheduler): an order resting past
//     TOrder triggers a cancel; a cancel outstanding past TCancel is
//     retried up to NCancelRetry times before the cycle is aborted to its
//     governing Condition state with a loudly logged inconsistency.
//
// Leg1 resolution: ALL_TRADED records leg1_filled_qty and immediately
// places the Leg2 hedge for that exact quantity. A cancel that confirms a
// partial fill (PARTIAL_FILLED_CANCELED with qty>0) hedges that partial
// amount instead. ALL_CANCELED with no fill returns to Condition. An
// ALL_TRADED arriving while a cancel is outstanding (the lost race) is
// treated identically to one arriving in Leg1Waiting.
//
// Leg2 resolution and chase: ALL_TRADED completes the cycle — held_qty
// moves by leg1_filled_qty (up on Open completion, down on Close
// completion) and the machine returns to the opposite Condition state. Any
// terminal event leaving a positive remainder (partial fill, cancel with
// no fill, or a timeout-triggered cancel) triggers a chase: while the
// placement ordinal is within ChaseLimitAttempts, the remainder reposts as
// a limit order at the new opposite best price; once the limit attempts
// are exhausted, the remainder is swept with a market order. Either way
// the machine stays in the Chasing variant of the Leg2 state until a
// terminal event resolves it.
//
// # Invariants enforced here
//
//   - At most one active order per venue at a time (a single slot is ever
//     live).
//   - The machine is in a Condition state if and only if the slot is nil.
//   - leg2_placed_qty never exceeds leg1_filled_qty — Leg2 is always sized
//     from the exact quantity Leg1 reported filled.
//   - Fill quantities carried by user-stream events are cumulative; the
//     remainder is always recomputed as qty_total - filled_qty, never
//     accumulated incrementally.
//   - A signal only fires on a strict `>` comparison against
//     MinSpreadThreshold — an edge exactly at the threshold does not place.
package strategy
