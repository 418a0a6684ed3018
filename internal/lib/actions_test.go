package lib

import "testing"

func TestParseAction(t *testing.T) {
    tests := []struct {
        data string
        want action
        ok   bool
    }{
        {"submit_phone_t1", action{kind: actSubmitPhone, taskID: "t1"}, true},
        {"reject_t1", action{kind: actRejectMenu, taskID: "t1"}, true},
        {"confirm_reject_problem_t1", action{kind: actConfirmReject, taskID: "t1", reason: "problem"}, true},
        {"confirm_reject_later_t1", action{kind: actConfirmReject, taskID: "t1", reason: "later"}, true},
        {"final_reject_problem_t1", action{kind: actFinalReject, taskID: "t1", reason: "problem"}, true},
        {"final_reject_later_t1", action{kind: actFinalReject, taskID: "t1", reason: "later"}, true},
        {"back_to_task_t1", action{kind: actBackToTask, taskID: "t1"}, true},
        {"select_task_t1", action{kind: actSelectTask, taskID: "t1"}, true},

        // IDs with underscores survive the reason split.
        {"final_reject_later_abc_def", action{kind: actFinalReject, taskID: "abc_def", reason: "later"}, true},

        {"", action{}, false},
        {"/get_task", action{}, false},
        {"submit_phone_", action{}, false},
        {"reject_", action{}, false},
        {"confirm_reject_t1", action{}, false},
        {"final_reject_whenever_t1", action{}, false},
        {"final_reject_later_", action{}, false},
        {"something_else_entirely", action{}, false},
    }
    for _, tc := range tests {
        got, ok := parseAction(tc.data)
        if ok != tc.ok || got != tc.want {
            t.Errorf("parseAction(%q) = %+v, %v; want %+v, %v", tc.data, got, ok, tc.want, tc.ok)
        }
    }
}
