package types

type DataType string

const (
	Null           DataType = "null"
	Int32          DataType = "integer_small"
	Int64          DataType = "integer"
	Float32        DataType = "number_small"
	Float64        DataType = "number"
	String         DataType = "string"
	Bool           DataType = "boolean"
	Object         DataType = "object"
	Array          DataType = "array"
	Unknown        DataType = "unknown"
	Timestamp      DataType = "timestamp"
	TimestampMilli DataType = "timestamp_milli" // storing datetime up to 3 precisions
	TimestampMicro DataType = "timestamp_micro" // storing datetime up to 6 precisions
	TimestampNano  DataType = "timestamp_nano"  // storing datetime up to 9 precisions
)

// Tree Representation of TypeWeights
//
//                              5 (String)
//                            /       	   \
//             3 (Float64)   /              \ 9 (TimestampNano)
//                         /  \             /
//             2 (Int64)  /    \4(Float32) / 8 (TimestampMicro)
//                       /                /
//            1 (Int32) /                / 7 (TimestampMilli)
//                     /                /
//           0 (Bool) /                / 6 (Timestamp)
//

var TypeWeights = map[DataType]int{
	Bool:           0,
	Int32:          1,
	Int64:          2,
	Float64:        3,
	Float32:        4,
	String:         5,
	TimestampNano:  9,
	TimestampMicro: 8,
	TimestampMilli: 7,
	Timestamp:      6,
}

// Record is a single producer row keyed by column name.
type Record map[string]any

// Tree that is being used for typecasting

type typeNode struct {
	t     DataType
	left  *typeNode
	right *typeNode
}

var typecastTree = &typeNode{
	t: String,
	left: &typeNode{
		t: Float64,
		left: &typeNode{
			t: Int64,
			left: &typeNode{
				t: Int32,
				left: &typeNode{
					t: Bool,
				},
			},
		},
		right: &typeNode{
			t: Float32,
		},
	},
	right: &typeNode{
		t: TimestampNano,
		left: &typeNode{
			t: TimestampMicro,
			left: &typeNode{
				t: TimestampMilli,
				left: &typeNode{
					t: Timestamp,
				},
			},
		},
	},
}

// GetCommonAncestorType returns lowest common ancestor type
func GetCommonAncestorType(t1, t2 DataType) DataType {
	return lowestCommonAncestor(typecastTree, t1, t2)
}

func lowestCommonAncestor(
	root *typeNode,
	t1, t2 DataType,
) DataType {
	node := root

	for node != nil {
		wt1, t1Exist := TypeWeights[t1]
		wt2, t2Exist := TypeWeights[t2]
		rootW, rootExist := TypeWeights[node.t]

		if !rootExist {
			return Unknown
		}

		// If any type is not found in weights map, return Unknown
		if !t1Exist || !t2Exist {
			return node.t
		}

		if wt1 > rootW && wt2 > rootW {
			// If both t1 and t2 have greater weights than parent
			node = node.right
		} else if wt1 < rootW && wt2 < rootW {
			// If both t1 and t2 have lesser weights than parent
			node = node.left
		} else {
			// We have found the split point, i.e. the LCA node.
			return node.t
		}
	}
	return Unknown
}
