package lib

import "strings"

type actionKind int

const (
    actSubmitPhone actionKind = iota
    actRejectMenu
    actConfirmReject
    actFinalReject
    actBackToTask
    actSelectTask
)

const (
    reasonProblem = "problem"
    reasonLater   = "later"
)

// action is a decoded callback button press. The underscore wire format is
// parsed exactly once, here; handlers only ever see the tagged value.
type action struct {
    kind   actionKind
    taskID string
    reason string
}

func parseAction(data string) (action, bool) {
    var a action
    switch {
    case strings.HasPrefix(data, "submit_phone_"):
        a = action{kind: actSubmitPhone, taskID: strings.TrimPrefix(data, "submit_phone_")}
    case strings.HasPrefix(data, "confirm_reject_"):
        reason, id, ok := splitReason(strings.TrimPrefix(data, "confirm_reject_"))
        if !ok {
            return action{}, false
        }
        a = action{kind: actConfirmReject, taskID: id, reason: reason}
    case strings.HasPrefix(data, "final_reject_"):
        reason, id, ok := splitReason(strings.TrimPrefix(data, "final_reject_"))
        if !ok {
            return action{}, false
        }
        a = action{kind: actFinalReject, taskID: id, reason: reason}
    case strings.HasPrefix(data, "back_to_task_"):
        a = action{kind: actBackToTask, taskID: strings.TrimPrefix(data, "back_to_task_")}
    case strings.HasPrefix(data, "select_task_"):
        a = action{kind: actSelectTask, taskID: strings.TrimPrefix(data, "select_task_")}
    case strings.HasPrefix(data, "reject_"):
        a = action{kind: actRejectMenu, taskID: strings.TrimPrefix(data, "reject_")}
    default:
        return action{}, false
    }
    if a.taskID == "" {
        return action{}, false
    }
    return a, true
}

func splitReason(rest string) (reason, taskID string, ok bool) {
    parts := strings.SplitN(rest, "_", 2)
    if len(parts) != 2 || parts[1] == "" {
        return "", "", false
    }
    if parts[0] != reasonProblem && parts[0] != reasonLater {
        return "", "", false
    }
    return parts[0], parts[1], true
}
