package market

// MarketContractLookupABI is the registry that points at the current market logic and database.
const MarketContractLookupABI = `[
{"type":"constructor","inputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"init","stateMutability":"nonpayable","inputs":[{"name":"_assetRegistry","type":"address"},{"name":"_marketLogicRegistry","type":"address"},{"name":"_marketDB","type":"address"}],"outputs":[]},
{"type":"function","name":"update","stateMutability":"nonpayable","inputs":[{"name":"_marketLogicRegistry","type":"address"}],"outputs":[]},
{"type":"function","name":"changeOwner","stateMutability":"nonpayable","inputs":[{"name":"_newOwner","type":"address"}],"outputs":[]},
{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"assetContractLookup","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"marketLogicRegistry","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"marketDB","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"event","name":"LogChangeOwner","anonymous":false,"inputs":[{"name":"_sender","type":"address","indexed":true},{"name":"_newOwner","type":"address","indexed":true}]}
]`

// MarketLogicABI holds demands, supplies and two-sided agreements.
const MarketLogicABI = `[
{"type":"constructor","inputs":[{"name":"_assetContractLookup","type":"address"},{"name":"_marketContractLookup","type":"address"}],"stateMutability":"nonpayable"},
{"type":"function","name":"init","stateMutability":"nonpayable","inputs":[{"name":"_database","type":"address"},{"name":"_admin","type":"address"}],"outputs":[]},
{"type":"function","name":"update","stateMutability":"nonpayable","inputs":[{"name":"_newLogic","type":"address"}],"outputs":[]},
{"type":"function","name":"changeOwner","stateMutability":"nonpayable","inputs":[{"name":"_newOwner","type":"address"}],"outputs":[]},
{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"db","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"assetContractLookup","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"userContractLookup","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"isRole","stateMutability":"view","inputs":[{"name":"_role","type":"uint8"},{"name":"_caller","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"createDemand","stateMutability":"nonpayable","inputs":[{"name":"_propertiesDocumentHash","type":"string"},{"name":"_documentDBURL","type":"string"}],"outputs":[]},
{"type":"function","name":"createSupply","stateMutability":"nonpayable","inputs":[{"name":"_propertiesDocumentHash","type":"string"},{"name":"_documentDBURL","type":"string"},{"name":"_assetId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"createAgreement","stateMutability":"nonpayable","inputs":[{"name":"_propertiesDocumentHash","type":"string"},{"name":"_documentDBURL","type":"string"},{"name":"_demandId","type":"uint256"},{"name":"_supplyId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"approveAgreementSupply","stateMutability":"nonpayable","inputs":[{"name":"_agreementId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"approveAgreementDemand","stateMutability":"nonpayable","inputs":[{"name":"_agreementId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"getDemand","stateMutability":"view","inputs":[{"name":"_demandId","type":"uint256"}],"outputs":[{"name":"_propertiesDocumentHash","type":"string"},{"name":"_documentDBURL","type":"string"},{"name":"_owner","type":"address"}]},
{"type":"function","name":"getSupply","stateMutability":"view","inputs":[{"name":"_supplyId","type":"uint256"}],"outputs":[{"name":"_propertiesDocumentHash","type":"string"},{"name":"_documentDBURL","type":"string"},{"name":"_assetId","type":"uint256"}]},
{"type":"function","name":"getAgreement","stateMutability":"view","inputs":[{"name":"_agreementId","type":"uint256"}],"outputs":[{"name":"_propertiesDocumentHash","type":"string"},{"name":"_documentDBURL","type":"string"},{"name":"_demandId","type":"uint256"},{"name":"_supplyId","type":"uint256"},{"name":"_approvedBySupplyOwner","type":"bool"},{"name":"_approvedByDemandOwner","type":"bool"}]},
{"type":"function","name":"getAllDemandListLength","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getAllSupplyListLength","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getAllAgreementListLength","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"event","name":"createdNewDemand","anonymous":false,"inputs":[{"name":"_sender","type":"address","indexed":false},{"name":"_demandId","type":"uint256","indexed":true}]},
{"type":"event","name":"createdNewSupply","anonymous":false,"inputs":[{"name":"_sender","type":"address","indexed":false},{"name":"_supplyId","type":"uint256","indexed":true}]},
{"type":"event","name":"LogAgreementCreated","anonymous":false,"inputs":[{"name":"_agreementId","type":"uint256","indexed":true},{"name":"_demandId","type":"uint256","indexed":false},{"name":"_supplyId","type":"uint256","indexed":false}]},
{"type":"event","name":"LogAgreementFullySigned","anonymous":false,"inputs":[{"name":"_agreementId","type":"uint256","indexed":true},{"name":"_demandId","type":"uint256","indexed":false},{"name":"_supplyId","type":"uint256","indexed":false}]},
{"type":"event","name":"LogChangeOwner","anonymous":false,"inputs":[{"name":"_sender","type":"address","indexed":true},{"name":"_newOwner","type":"address","indexed":true}]}
]`

// MarketDBABI is the storage contract owned by the market logic.
const MarketDBABI = `[
{"type":"constructor","inputs":[{"name":"_logic","type":"address"}],"stateMutability":"nonpayable"},
{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"changeOwner","stateMutability":"nonpayable","inputs":[{"name":"_newOwner","type":"address"}],"outputs":[]},
{"type":"event","name":"LogChangeOwner","anonymous":false,"inputs":[{"name":"_sender","type":"address","indexed":true},{"name":"_newOwner","type":"address","indexed":true}]}
]`

// AgreementLogicABI is the agreement contract variant that also stores matcher properties.
const AgreementLogicABI = `[
{"type":"constructor","inputs":[{"name":"_assetContractLookup","type":"address"},{"name":"_marketContractLookup","type":"address"}],"stateMutability":"nonpayable"},
{"type":"function","name":"init","stateMutability":"nonpayable","inputs":[{"name":"_database","type":"address"},{"name":"_admin","type":"address"}],"outputs":[]},
{"type":"function","name":"update","stateMutability":"nonpayable","inputs":[{"name":"_newLogic","type":"address"}],"outputs":[]},
{"type":"function","name":"changeOwner","stateMutability":"nonpayable","inputs":[{"name":"_newOwner","type":"address"}],"outputs":[]},
{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"db","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"assetContractLookup","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"userContractLookup","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"isRole","stateMutability":"view","inputs":[{"name":"_role","type":"uint8"},{"name":"_caller","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"createAgreement","stateMutability":"nonpayable","inputs":[{"name":"_propertiesDocumentHash","type":"string"},{"name":"_documentDBURL","type":"string"},{"name":"_matcherPropertiesDocumentHash","type":"string"},{"name":"_matcherDBURL","type":"string"},{"name":"_demandId","type":"uint256"},{"name":"_supplyId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"approveAgreementSupply","stateMutability":"nonpayable","inputs":[{"name":"_agreementId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"approveAgreementDemand","stateMutability":"nonpayable","inputs":[{"name":"_agreementId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"setMatcherProperties","stateMutability":"nonpayable","inputs":[{"name":"_agreementId","type":"uint256"},{"name":"_matcherPropertiesDocumentHash","type":"string"},{"name":"_matcherDBURL","type":"string"}],"outputs":[]},
{"type":"function","name":"getAgreement","stateMutability":"view","inputs":[{"name":"_agreementId","type":"uint256"}],"outputs":[{"name":"_propertiesDocumentHash","type":"string"},{"name":"_documentDBURL","type":"string"},{"name":"_matcherPropertiesDocumentHash","type":"string"},{"name":"_matcherDBURL","type":"string"},{"name":"_demandId","type":"uint256"},{"name":"_supplyId","type":"uint256"},{"name":"_approvedBySupplyOwner","type":"bool"},{"name":"_approvedByDemandOwner","type":"bool"}]},
{"type":"function","name":"getAllAgreementListLength","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"event","name":"LogAgreementCreated","anonymous":false,"inputs":[{"name":"_agreementId","type":"uint256","indexed":true},{"name":"_demandId","type":"uint256","indexed":false},{"name":"_supplyId","type":"uint256","indexed":false}]},
{"type":"event","name":"LogAgreementFullySigned","anonymous":false,"inputs":[{"name":"_agreementId","type":"uint256","indexed":true},{"name":"_demandId","type":"uint256","indexed":false},{"name":"_supplyId","type":"uint256","indexed":false}]},
{"type":"event","name":"LogChangeOwner","anonymous":false,"inputs":[{"name":"_sender","type":"address","indexed":true},{"name":"_newOwner","type":"address","indexed":true}]}
]`
