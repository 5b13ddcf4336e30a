package query

import (
	"context"

	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/curriculum"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// attemptedStates projects the current state of every given assessment and
// returns the attempted ones. Options are resolved once per distinct node so
// a regeneration pass does not hammer the options table.
func attemptedStates(
	ctx context.Context,
	ledger *assessment.Ledger,
	resolver *assessment.OptionResolver,
	schema *assessment.Schema,
	assessments []*assessment.Assessment,
) ([]assessment.State, error) {
	paramsByNode := make(map[shared.NodeID]assessment.Params)

	attempted := make([]assessment.State, 0, len(assessments))
	for _, a := range assessments {
		params, ok := paramsByNode[a.NodeID]
		if !ok {
			var err error
			params, err = resolver.Params(ctx, schema, a.NodeID)
			if err != nil {
				return nil, err
			}
			paramsByNode[a.NodeID] = params
		}

		state, err := ledger.StateOf(ctx, a, schema, params)
		if err != nil {
			return nil, err
		}
		if state.IsAttempted {
			attempted = append(attempted, state)
		}
	}
	return attempted, nil
}

// subtreeNodeIDs computes the closure of nodes an aggregation covers: the
// node and its descendants, narrowed to the schema's target node type.
func subtreeNodeIDs(ctx context.Context, tree curriculum.TreeReader, nodeID shared.NodeID, ofType curriculum.NodeType) ([]shared.NodeID, error) {
	nodes, err := tree.DescendantsOf(ctx, nodeID, ofType)
	if err != nil {
		return nil, err
	}
	ids := make([]shared.NodeID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids, nil
}
